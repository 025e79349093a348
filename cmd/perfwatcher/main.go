package main

import (
	"perf-anomaly-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
