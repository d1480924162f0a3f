package main

import "surveyforge/cmd"

func main() {
	cmd.Execute()
}
