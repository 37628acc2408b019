package main

import (
	"database/sql"
	"fmt"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/dashboard"
	"github.com/classhub/lms/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	db         *sql.DB // nil on the kv engine
	usrSvc     *user.Service
	classSvc   *class.Service
	dashSvc    *dashboard.Service
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lmsadmin",
		Short:         "ClassHub administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(cli.newMigrateCommand())
	rootCmd.AddCommand(cli.newAddUserCommand())
	rootCmd.AddCommand(cli.newResetPasswordCommand())
	rootCmd.AddCommand(cli.newUsersCommand())
	rootCmd.AddCommand(cli.newClassesCommand())
	rootCmd.AddCommand(cli.newStatsCommand())

	return rootCmd
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

// validationError flattens validator errors into a readable message.
func (cli *commandLine) validationError(err error) error {
	verrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := core.TranslateErrors(verrs, cli.translator)
	msg := "invalid input:"
	for _, fe := range verrs {
		msg += fmt.Sprintf(" %s: %s;", fe.Field(), fields[fe.Field()])
	}
	return errors.New(msg)
}
