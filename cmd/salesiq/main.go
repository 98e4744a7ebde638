// Command salesiq investigates marketing performance anomalies: it parses
// a natural-language question, queries the metrics database, flags notable
// deviations and synthesizes a five-section report.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
