package cmd

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"
