// Command slash records, stores and replays tap macros against an
// emulator, a browser tab or a desktop display.
package main

func main() {
	Execute()
}
