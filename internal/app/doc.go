// Package app contains the driver behind the flow command. It owns the
// process-wide pieces (logger, environment, health endpoint) and runs one
// graph built from a flow file, decoupled from how its configuration was
// gathered.
package app
