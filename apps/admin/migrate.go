package main

func (cli *commandLine) migrate(args []string) error {
	return cli.runMigrations(args[0], args[1:]...)
}
