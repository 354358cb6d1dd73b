// Package hearth carries module-level metadata shared by the CLI and
// the hub server.
package hearth

// Version is the semantic version of the Hearth module.
const Version = "0.4.0"
