// Package cmd implements the apicheck CLI commands using Cobra.
//
// Available commands:
//   - run: Execute the suite against the configured base URL
//   - list: Display the cases in the suite
//   - validate: Check a local JSON document against the bundled schema
//   - history: Show recent runs from the history database
//   - init: Write a starter config.properties
//   - version: Show apicheck version information
//
// Flag defaults honour APICHECK_* environment variables. Exit codes are
// 0 when every case passes, 1 on failures, 3 for configuration errors and
// 64 for usage errors.
package cmd
