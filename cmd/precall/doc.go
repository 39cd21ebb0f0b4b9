// Command precall checks the camera, microphone and speaker before a call.
//
// Run without arguments in a terminal it opens an interactive device test
// screen. Piped or with --headless it runs one check pass, prints a report
// and exits non-zero unless the camera and microphone both work.
package main
