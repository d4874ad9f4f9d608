// Package cli parses the mzcpp command line into a Config. It validates
// user input and classifies failures with the process exit code they map
// to.
package cli
