// Package builtin ships the policies bundled with the proxy: passthrough
// forwarding, tool call vetting, content redaction, and output rate
// limiting. Each policy is a small, self-contained example of the hook
// interface and is registered under its name in the default registry.
package builtin
