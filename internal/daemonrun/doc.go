// Package daemonrun hosts the foreground daemon process loop shared by
// `captioner serve` and the captionerd binary.
package daemonrun
