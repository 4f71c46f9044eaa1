// Command schoolctl performs administrative tasks directly against the record store.
//
// Usage:
//
//	schoolctl rollover --yes             start the next academic year
//	schoolctl archives list              list archived years
//	schoolctl archives show --year 2024  print the learners archived for a year
//	schoolctl hash-password              print a bcrypt hash for ADMIN_PASSWORD_HASH
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
