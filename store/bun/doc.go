// Package bunstore implements the job, workflow, and usage stores on
// PostgreSQL via the Bun ORM. Schema migrations are embedded and
// applied by Migrate.
package bunstore
