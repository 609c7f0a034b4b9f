// Command appshell is the headless companion of the desktop app. It runs
// one-off transcriptions, serves the frontend to a browser, checks the
// speech engine installation, and manages the configuration file.
package main
