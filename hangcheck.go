// Package hangcheck classifies whether a risky operation succeeds, crashes
// or hangs on the current machine by running it in a supervised child process.
package hangcheck

// Version is the hangcheck release version.
const Version = "0.1.0"
