// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the assemble lifecycle: load the
// configuration files, apply a steering profile, finalize the process and
// hand the result off. It is decoupled from any specific entrypoint like a
// CLI.
package app
