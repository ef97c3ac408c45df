package main

import (
	"fmt"

	"chcverify/internal/config"
	"chcverify/internal/driver"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/spf13/cobra"
)

var (
	SolidityFile  string
	UseTextSolver bool
	UseNative     bool
	UseYices      bool
)

var verifyCommand = &cobra.Command{
	Use:   "verify",
	Short: "verify assertions in a solidity contract",
	Long:  ``,
	Run: func(*cobra.Command, []string) {
		if err := verifyExec(); err != nil {
			fmt.Printf("service err: %v", err)
		} else {
			fmt.Printf("service quit")
		}
	},
}

func init() {
	verifyCommand.Flags().StringVar(&SolidityFile, "file", "", "solidity file to verify")
	verifyCommand.Flags().BoolVar(&UseTextSolver, "text-solver", true, "run the SMT-LIB2 text back-end, which defers to an external Datalog/CHC engine")
	verifyCommand.Flags().BoolVar(&UseNative, "native-solver", false, "also run the in-process go-z3 back-end (unsound for proving a query unreachable; best-effort only)")
	verifyCommand.Flags().BoolVar(&UseYices, "yices-solver", false, "also run the in-process Yices2 back-end (shares the native back-end's unsoundness)")
}

func verifyExec() error {
	fmt.Printf("verify exec\n")
	yices2.Init()
	defer yices2.Exit()

	cfg := config.Default()
	cfg.EnabledSolvers.Text = UseTextSolver
	cfg.EnabledSolvers.Native = UseNative
	cfg.EnabledSolvers.Yices = UseYices

	d := driver.New(cfg)
	reporter, err := d.Run(SolidityFile)
	if err != nil {
		return err
	}
	for _, diag := range reporter.Diagnostics() {
		fmt.Println(diag.String())
	}
	if reporter.HasErrors() {
		return fmt.Errorf("verification reported errors")
	}
	return nil
}
