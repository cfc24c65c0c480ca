// Strata retires laboratory records that fell outside their retention period.
//
// Records old enough and in a final state are exported to the archive base
// path as JSON, replaced in the active store by a searchable stub, and
// deleted together with everything they contain.
//
// Usage:
//
//	# Run the scheduler, the task workers and the admin server
//	strata run --config /etc/strata/strata.yaml
//
//	# List the records the next pass would archive
//	strata candidates --limit 20
//
//	# Archive every candidate now
//	strata archive --yes
//
//	# Search archived records
//	strata items --query "Happy Hills" --output csv
//
//	# Check a configuration file
//	strata config validate
package main

import "os"

func main() {
	os.Exit(Execute())
}
