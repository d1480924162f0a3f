package ui_test

import (
	"fmt"

	"surveyforge/internal/ui"
)

// ExampleTable demonstrates table formatting
func ExampleTable() {
	table := ui.NewTable()
	table.AddHeader("Stage", "Status", "Time")
	table.AddRow("ingest", "Success", "1.2s")
	table.AddRow("harmonize", "Success", "0.8s")
	table.AddRow("kpi", "Failed", "0.5s")
	table.Render()

	// Output:
	// Stage      Status   Time
	// -----      ------   ----
	// ingest     Success  1.2s
	// harmonize  Success  0.8s
	// kpi        Failed   0.5s
}

// ExampleNewSetupWizard demonstrates the setup wizard
func ExampleNewSetupWizard() {
	_ = ui.NewSetupWizard() // wizard would be used interactively

	// In a real scenario, this would be interactive
	// result, err := wizard.Run()

	fmt.Println("Setup wizard example")

	// Output:
	// Setup wizard example
}
