package rules

import "github.com/graphmcp/decomm/pkg/classify"

// defaultRuleSets returns the built-in rules per source type. Slice order is
// evaluation order.
func defaultRuleSets() map[classify.SourceType][]Rule {
	return map[classify.SourceType][]Rule{
		classify.Infrastructure: {
			{
				ID:          "terraform_resource_removal",
				Description: "Remove Terraform database resources",
				Patterns: []string{
					`resource\s+"[^"]*database[^"]*"\s+"{{TARGET_DB}}"`,
					`resource\s+"[^"]*rds[^"]*"\s+"{{TARGET_DB}}"`,
					`resource\s+"[^"]*postgresql[^"]*"\s+"{{TARGET_DB}}"`,
				},
				Action:             ActionCommentOut,
				RequiredFrameworks: []string{"terraform"},
				CommentPrefix:      "#",
			},
			{
				ID:          "helm_values_cleanup",
				Description: "Remove database entries from values.yaml",
				Patterns: []string{
					`^(\s*){{TARGET_DB}}:\s*$`,
					`^(\s*)database:\s*{{TARGET_DB}}\s*$`,
					`^(\s*)name:\s*['"]?{{TARGET_DB}}['"]?\s*$`,
				},
				Action:             ActionCommentOut,
				RequiredFrameworks: []string{"helm"},
				CommentPrefix:      "#",
			},
			{
				ID:          "kubernetes_manifest_cleanup",
				Description: "Remove Kubernetes database resources",
				Patterns: []string{
					`name:\s*{{TARGET_DB}}[-_].*`,
					`{{TARGET_DB}}[-_]database`,
					`DATABASE_NAME:\s*['"]{{TARGET_DB}}['"]`,
				},
				Action:             ActionCommentOut,
				RequiredFrameworks: []string{"kubernetes"},
				CommentPrefix:      "#",
			},
			{
				ID:          "docker_compose_cleanup",
				Description: "Remove Docker Compose database services",
				Patterns: []string{
					`^\s*{{TARGET_DB}}[-_]?(db|database):\s*$`,
					`POSTGRES_DB:\s*{{TARGET_DB}}`,
					`DATABASE_NAME:\s*{{TARGET_DB}}`,
				},
				Action:             ActionCommentOut,
				RequiredFrameworks: []string{"docker"},
				CommentPrefix:      "#",
			},
		},
		classify.Config: {
			{
				ID:          "database_url_removal",
				Description: "Remove database connection URLs",
				Patterns: []string{
					`{{TARGET_DB}}_DATABASE_URL\s*=.*`,
					`DATABASE_URL.*{{TARGET_DB}}.*`,
					`{{TARGET_DB}}_CONNECTION_STRING\s*=.*`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "#",
			},
			{
				ID:          "database_host_removal",
				Description: "Remove database host configurations",
				Patterns: []string{
					`{{TARGET_DB}}_HOST\s*[=:].*`,
					`{{TARGET_DB}}_PORT\s*[=:].*`,
					`{{TARGET_DB}}_USER\s*[=:].*`,
					`{{TARGET_DB}}_PASSWORD\s*[=:].*`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "#",
			},
			{
				ID:          "yaml_config_cleanup",
				Description: "Remove YAML database configurations",
				Patterns: []string{
					`^(\s*){{TARGET_DB}}:\s*$`,
					`^(\s*)database:\s*{{TARGET_DB}}\s*$`,
					`^(\s*)host:\s*{{TARGET_DB}}[-_].*`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "#",
			},
			{
				ID:          "helm_values_deprecation",
				Description: "Mark Helm values and YAML examples as deprecated",
				Patterns: []string{
					`name:\s*['"]{{TARGET_DB}}['"]`,
					`{{TARGET_DB}}[-_].*:`,
				},
				Action:        ActionAddDeprecationNotice,
				CommentPrefix: "#",
			},
		},
		classify.Sql: {
			{
				ID:          "create_database_removal",
				Description: "Comment out CREATE DATABASE statements",
				Patterns: []string{
					`CREATE\s+DATABASE\s+{{TARGET_DB}}\s*;?`,
					`CREATE\s+SCHEMA\s+{{TARGET_DB}}\s*;?`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "--",
			},
			{
				ID:          "use_database_removal",
				Description: "Comment out USE database statements",
				Patterns: []string{
					`USE\s+{{TARGET_DB}}\s*;?`,
					`\\connect\s+{{TARGET_DB}}\s*;?`,
					`\\c\s+{{TARGET_DB}}\s*;?`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "--",
			},
			{
				ID:          "table_references_cleanup",
				Description: "Comment out table references with database prefix",
				Patterns: []string{
					`FROM\s+{{TARGET_DB}}\.\w+`,
					`INSERT\s+INTO\s+{{TARGET_DB}}\.\w+`,
					`UPDATE\s+{{TARGET_DB}}\.\w+`,
					`DELETE\s+FROM\s+{{TARGET_DB}}\.\w+`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "--",
			},
		},
		classify.Python: {
			{
				ID:          "django_database_config",
				Description: "Remove Django database configurations",
				Patterns: []string{
					`'{{TARGET_DB}}':\s*\{`,
					`"{{TARGET_DB}}":\s*\{`,
					`{{TARGET_DB}}_DATABASE\s*=.*`,
				},
				Action:             ActionCommentOut,
				RequiredFrameworks: []string{"django"},
				CommentPrefix:      "#",
			},
			{
				ID:          "sqlalchemy_engine_removal",
				Description: "Remove SQLAlchemy engine configurations",
				Patterns: []string{
					`{{TARGET_DB}}_engine\s*=.*create_engine.*`,
					`{{TARGET_DB}}_SESSION\s*=.*`,
					`{{TARGET_DB}}_connection\s*=.*`,
				},
				Action:             ActionCommentOut,
				RequiredFrameworks: []string{"sqlalchemy"},
				CommentPrefix:      "#",
			},
			{
				ID:          "model_references_cleanup",
				Description: "Comment out database model references",
				Patterns: []string{
					`class\s+{{TARGET_DB}}\w*\(.*Model.*\):`,
					`from\s+.*{{TARGET_DB}}.*\s+import`,
					`import\s+.*{{TARGET_DB}}.*`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "#",
			},
			{
				ID:          "connection_string_cleanup",
				Description: "Remove database connection strings",
				Patterns: []string{
					`{{TARGET_DB}}_DATABASE_URL\s*=.*`,
					`DATABASE_URL.*{{TARGET_DB}}.*`,
					`postgresql://.*{{TARGET_DB}}.*`,
					`mysql://.*{{TARGET_DB}}.*`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "#",
			},
			{
				ID:          "test_data_deprecation",
				Description: "Mark test data and examples as deprecated",
				Patterns: []string{
					`\(\s*"{{TARGET_DB}}"\s*,.*\)`,
					`"{{TARGET_DB}}":\s*\(`,
					`"{{TARGET_DB}}"[,\s]*$`,
				},
				Action:        ActionAddDeprecationNotice,
				CommentPrefix: "#",
			},
		},
		classify.Shell: {
			{
				ID:          "database_variable_removal",
				Description: "Remove database variable assignments",
				Patterns: []string{
					`^(\s*){{TARGET_DB}}_[A-Z_]*=.*$`,
					`^(\s*)export\s+{{TARGET_DB}}_[A-Z_]*=.*$`,
					`^(\s*)DB_NAME=['"]?{{TARGET_DB}}['"]?.*$`,
					`^(\s*)DATABASE=['"]?{{TARGET_DB}}['"]?.*$`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "#",
			},
			{
				ID:          "database_command_removal",
				Description: "Remove database-related commands",
				Patterns: []string{
					`psql.*{{TARGET_DB}}.*`,
					`mysql.*{{TARGET_DB}}.*`,
					`createdb\s+{{TARGET_DB}}`,
					`dropdb\s+{{TARGET_DB}}`,
					`pg_dump.*{{TARGET_DB}}.*`,
					`mysqldump.*{{TARGET_DB}}.*`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "#",
			},
			{
				ID:          "deployment_script_cleanup",
				Description: "Remove deployment steps for the database",
				Patterns: []string{
					`deploy.*{{TARGET_DB}}.*`,
					`install.*{{TARGET_DB}}.*`,
					`setup.*{{TARGET_DB}}.*`,
					`configure.*{{TARGET_DB}}.*`,
				},
				Action:        ActionCommentOut,
				CommentPrefix: "#",
			},
		},
		classify.Documentation: {
			{
				ID:          "markdown_references_update",
				Description: "Mark markdown database references as deprecated",
				Patterns: []string{
					"#.*{{TARGET_DB}}.*",
					"`{{TARGET_DB}}`",
				},
				Action:        ActionAddDeprecationNotice,
				CommentPrefix: ">",
			},
			{
				ID:          "table_references_deprecate",
				Description: "Mark table and list entries as deprecated",
				Patterns: []string{
					`\|.*{{TARGET_DB}}.*\|`,
					`^\s*\*.*{{TARGET_DB}}.*`,
					`^\s*-.*{{TARGET_DB}}.*`,
				},
				Action:        ActionAddDeprecationNotice,
				CommentPrefix: ">",
			},
			{
				ID:          "example_configuration_deprecate",
				Description: "Mark example configurations as deprecated",
				Patterns: []string{
					`"{{TARGET_DB}}":\s*\{`,
					`"{{TARGET_DB}}":\s*\(`,
					`"{{TARGET_DB}}"[,\s]*$`,
				},
				Action:        ActionAddDeprecationNotice,
				CommentPrefix: ">",
			},
		},
	}
}
