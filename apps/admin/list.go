package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/classhub/lms/core/user"
)

const timeLayout = "2006-01-02 15:04"

var errStatsTarget = errors.New("one of --class or --lecture is required")

func (cli *commandLine) newUsersCommand() *cobra.Command {
	var (
		search string
		roles  []string
	)
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := cli.usrSvc.Query(cmd.Context(), user.QueryFilter{Search: search, Roles: roles})
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(users))
			for _, usr := range users {
				lastLogin := "-"
				if usr.LastLogin != nil {
					lastLogin = usr.LastLogin.Format(timeLayout)
				}
				rows = append(rows, []string{
					usr.ID, usr.Username, usr.Name, usr.Email, usr.Role,
					strconv.FormatBool(usr.IsActive), lastLogin,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Username", "Name", "Email", "Role", "Active", "Last login"}, rows, nil,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Match name, username or email")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Only list these roles")
	return cmd
}

func (cli *commandLine) newClassesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List classes with their professor",
		RunE: func(cmd *cobra.Command, args []string) error {
			dash, err := cli.dashSvc.Admin(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(dash.Classes))
			for _, cls := range dash.Classes {
				rows = append(rows, []string{cls.ID, cls.Title, cls.ProfName, cls.CreatedAt.Format(timeLayout)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Title", "Professor", "Created"}, rows, nil))
			return nil
		},
	}
}

func (cli *commandLine) newStatsCommand() *cobra.Command {
	var classID, lectureID string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show student progress on a class or a lecture",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}

			switch {
			case lectureID != "":
				stats, err := cli.dashSvc.LectureStats(ctx, lectureID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats.Students))
				for _, st := range stats.Students {
					rows = append(rows, []string{st.Username, st.Name, fmt.Sprintf("%d%%", st.Rate), st.Status})
				}
				fmt.Fprintln(cmd.OutOrStdout(), stats.Lecture.Title)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Username", "Name", "Rate", "Status"}, rows, aligns))

			case classID != "":
				dash, err := cli.dashSvc.Class(ctx, classID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(dash.Students))
				for _, st := range dash.Students {
					rows = append(rows, []string{st.Username, st.Name, fmt.Sprintf("%d%%", st.AvgRate), st.Status})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d lectures)\n", dash.Class.Title, len(dash.Lectures))
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Username", "Name", "Average", "Status"}, rows, aligns))

			default:
				return errStatsTarget
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&classID, "class", "", "Class ID")
	cmd.Flags().StringVar(&lectureID, "lecture", "", "Lecture ID")
	return cmd
}
