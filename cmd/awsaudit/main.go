// awsaudit - read-only AWS inventory and audit report generator
package main

func main() {
	Execute()
}
