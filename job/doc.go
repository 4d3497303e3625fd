// Package job defines the job entity, its status lifecycle, the handler
// registry jobs are dispatched through, and job-type inference from
// workflow configurations.
package job
