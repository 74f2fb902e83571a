package classify

import "regexp"

// typeSignals holds the path and content signals for one source type.
type typeSignals struct {
	extensions   map[string]bool
	fileNames    map[string]bool
	dirFragments []string
	content      []*regexp.Regexp
}

// frameworkSignal pairs a framework tag with the regexes that detect it.
// Detection order is fixed so results are deterministic.
type frameworkSignal struct {
	name    string
	content []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?im)`+e))
	}
	return out
}

func stringSet(items ...string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func defaultSignals() map[SourceType]typeSignals {
	return map[SourceType]typeSignals{
		Infrastructure: {
			extensions: stringSet(".tf", ".tfvars", ".hcl", ".nomad"),
			fileNames: stringSet("Dockerfile", "docker-compose.yml", "docker-compose.yaml",
				"Vagrantfile", "Jenkinsfile", "Makefile"),
			dirFragments: []string{"terraform/", "helm/", "k8s/", "kubernetes/",
				"charts/", "manifests/", "deployment/", "infra/"},
			content: compileAll(
				`resource\s+"[^"]+"\s+"[^"]+"`,
				`apiVersion:\s*v\d+`,
				`kind:\s*(Deployment|Service|ConfigMap|Secret)`,
				`FROM\s+[\w\-\./]+`,
				`helm\s+(install|upgrade|delete)`,
			),
		},
		Config: {
			extensions: stringSet(".yml", ".yaml", ".json", ".toml", ".ini", ".conf",
				".config", ".properties", ".env"),
			fileNames: stringSet(".env", ".env.local", ".env.production", "config.yml",
				"application.yml", "settings.yml", "config.json"),
			dirFragments: []string{"config/", "configs/", "settings/", "env/"},
			content: compileAll(
				`database[_\-]?url[:\s]*`,
				`db[_\-]?(host|port|name|user)[:\s]*`,
				`connection[_\-]?string[:\s]*`,
				`jdbc:[^"'\s]+`,
				`postgresql://[^"'\s]+`,
				`mysql://[^"'\s]+`,
			),
		},
		Sql: {
			extensions: stringSet(".sql", ".ddl", ".dml", ".dump", ".backup"),
			fileNames:  stringSet("schema.sql", "dump.sql", "backup.sql", "migration.sql"),
			dirFragments: []string{"sql/", "migrations/", "database/", "db/",
				"schemas/", "dumps/", "backups/"},
			content: compileAll(
				`CREATE\s+(TABLE|DATABASE|SCHEMA|INDEX)`,
				`DROP\s+(TABLE|DATABASE|SCHEMA|INDEX)`,
				`ALTER\s+TABLE`,
				`INSERT\s+INTO`,
				`SELECT\s+.*\s+FROM`,
				`UPDATE\s+.*\s+SET`,
				`DELETE\s+FROM`,
			),
		},
		Python: {
			extensions: stringSet(".py", ".pyw", ".pyx", ".pyi"),
			fileNames: stringSet("manage.py", "wsgi.py", "asgi.py", "settings.py",
				"models.py"),
			dirFragments: []string{"python/", "src/", "app/", "apps/"},
			content: compileAll(
				`from\s+django`,
				`import\s+django`,
				`from\s+sqlalchemy`,
				`import\s+sqlalchemy`,
				`class\s+\w+\(models\.Model\)`,
				`class\s+\w+\(db\.Model\)`,
				`@app\.route`,
				`def\s+\w+\(request`,
			),
		},
		Shell: {
			extensions:   stringSet(".sh", ".bash", ".zsh", ".ksh"),
			fileNames:    stringSet("entrypoint.sh", "run.sh", "deploy.sh", "setup.sh"),
			dirFragments: []string{"scripts/", "bin/", "hooks/"},
			content: compileAll(
				`^#!/(usr/)?bin/(env\s+)?(ba|z|k)?sh`,
				`^\s*export\s+[A-Z_]+=`,
				`psql\s+`,
				`mysql\s+`,
				`set\s+-e`,
			),
		},
		Documentation: {
			extensions: stringSet(".md", ".rst", ".txt", ".adoc", ".wiki"),
			fileNames: stringSet("README.md", "CHANGELOG.md", "CONTRIBUTING.md",
				"ARCHITECTURE.md", "API.md"),
			dirFragments: []string{"docs/", "documentation/", "wiki/"},
			content: compileAll(
				`#\s+.*[Dd]atabase`,
				`##\s+.*[Ss]chema`,
				"```sql",
				"```python",
				`API\s+documentation`,
			),
		},
	}
}

func defaultFrameworkSignals() []frameworkSignal {
	return []frameworkSignal{
		{"terraform", compileAll(`terraform\s*{`, `provider\s+"[^"]+"`, `resource\s+"[^"]+"`)},
		{"kubernetes", compileAll(`apiVersion:`, `kind:`, `metadata:`)},
		{"helm", compileAll(`Chart\.yaml`, `values\.yaml`, `templates/`)},
		{"docker", compileAll(`FROM\s+`, `RUN\s+`, `COPY\s+`, `ADD\s+`)},
		{"django", compileAll(`from\s+django`, `DJANGO_SETTINGS_MODULE`, `manage\.py`)},
		{"flask", compileAll(`from\s+flask`, `@app\.route`, `Flask\(__name__\)`)},
		{"fastapi", compileAll(`from\s+fastapi`, `@app\.(get|post|put|delete)`, `FastAPI\(`)},
		{"sqlalchemy", compileAll(`from\s+sqlalchemy`, `declarative_base`, `Column\(`)},
		{"alembic", compileAll(`from\s+alembic`, `revision\s*=`, `down_revision\s*=`)},
	}
}

// ruleFiles lists the rule documents that apply to a source type. The
// general rules always apply.
func ruleFiles(t SourceType) []string {
	files := []string{"rules/general_rules.md"}
	switch t {
	case Infrastructure:
		files = append(files, "rules/infrastructure_rules.md")
	case Config:
		files = append(files, "rules/config_rules.md")
	case Sql:
		files = append(files, "rules/sql_rules.md")
	case Python:
		files = append(files, "rules/python_rules.md")
	case Shell:
		files = append(files, "rules/shell_rules.md")
	}
	return files
}
