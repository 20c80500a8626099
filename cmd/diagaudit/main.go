// Diagaudit - Diagnostic Retention Compliance Auditor
// Discover. Evaluate. Report.
package main

func main() {
	Execute()
}
