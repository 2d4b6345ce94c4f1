package logging

import (
	"log"
	"os"
)

// Logf is the diagnostic logger used by every pipeline package. It defaults to
// log.Printf and may be replaced with SetLogger so tests can mute or capture it.
var Logf func(format string, v ...interface{}) = log.Printf

func InitLogging() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
