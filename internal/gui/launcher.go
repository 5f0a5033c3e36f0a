package gui

// Run launches the GUI with options parsed from args.
func Run(args []string) error {
	return LaunchGUI(parseArgs(args))
}

// parseArgs picks --config/-c and --env-file out of args. Anything else is
// ignored so platform launchers can pass their own arguments.
func parseArgs(args []string) Options {
	var opts Options
	for i := 0; i < len(args); i++ {
		if i+1 >= len(args) {
			break
		}
		switch args[i] {
		case "--config", "-c":
			opts.ConfigFile = args[i+1]
			i++
		case "--env-file":
			opts.EnvFile = args[i+1]
			i++
		}
	}
	return opts
}
