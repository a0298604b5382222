package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinicrx/clinicrx/internal/client"
	"github.com/clinicrx/clinicrx/internal/domain/patient"
	"github.com/clinicrx/clinicrx/internal/domain/prescription"
)

const (
	defaultServerURL = "http://localhost:8000"
	envServerURL     = "CLINICRX_URL"
	envToken         = "CLINICRX_TOKEN"
)

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Call a running server",
	}
	cmd.PersistentFlags().String("url", "", "Server base URL (default $"+envServerURL+" or "+defaultServerURL+")")
	cmd.PersistentFlags().String("token", "", "Bearer token (default $"+envToken+")")

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			s, err := newClient(cmd).Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", s.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "Logged in as %s, token expires %s\n",
				s.User.Email, s.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
	loginCmd.Flags().String("email", "", "Doctor email")
	loginCmd.Flags().String("password", "", "Doctor password")
	cmd.AddCommand(loginCmd)

	patientsCmd := &cobra.Command{
		Use:   "patients",
		Short: "List your patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd)
			if err != nil {
				return err
			}
			search, _ := cmd.Flags().GetString("search")
			page, _ := cmd.Flags().GetInt("page")
			res, err := newClient(cmd).ListPatients(cmd.Context(), s, client.PatientQuery{Search: search, Page: page})
			if err != nil {
				return err
			}
			printPatients(cmd.OutOrStdout(), res)
			return nil
		},
	}
	patientsCmd.Flags().String("search", "", "Match name, phone or email")
	patientsCmd.Flags().Int("page", 1, "Page number")
	cmd.AddCommand(patientsCmd)

	suggestionsCmd := &cobra.Command{
		Use:   "suggestions",
		Short: "Show a saved suggestion list",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session(cmd)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")
			limit, _ := cmd.Flags().GetInt("limit")
			out, err := newClient(cmd).Suggestions(cmd.Context(), s, prescription.Kind(kind), limit)
			if err != nil {
				return err
			}
			printSuggestions(cmd.OutOrStdout(), out)
			return nil
		},
	}
	suggestionsCmd.Flags().String("kind", string(prescription.KindDiagnoses), "diagnoses, symptoms, tests or medicines")
	suggestionsCmd.Flags().Int("limit", 0, "Maximum entries (0 uses the server default)")
	cmd.AddCommand(suggestionsCmd)

	return cmd
}

// flagOrEnv returns the flag value, then the environment variable, then def.
func flagOrEnv(cmd *cobra.Command, flag, env, def string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

func newClient(cmd *cobra.Command) *client.Client {
	return client.New(flagOrEnv(cmd, "url", envServerURL, defaultServerURL))
}

func session(cmd *cobra.Command) (*client.Session, error) {
	token := flagOrEnv(cmd, "token", envToken, "")
	if token == "" {
		return nil, fmt.Errorf("--token or $%s is required; run 'client login' first", envToken)
	}
	return &client.Session{Token: token}, nil
}

func printPatients(w io.Writer, res *client.Page[patient.Patient]) {
	fmt.Fprintf(w, "%-36s %-30s %-4s %-7s %s\n", "ID", "NAME", "AGE", "GENDER", "PHONE")
	for _, p := range res.Data {
		fmt.Fprintf(w, "%-36s %-30s %-4d %-7s %s\n", p.ID, p.Name, p.Age, p.Gender, p.Phone)
	}
	fmt.Fprintf(w, "page %d of %d, %d total\n", res.Page, res.TotalPages, res.Total)
}

func printSuggestions(w io.Writer, out []prescription.Suggestion) {
	fmt.Fprintf(w, "%-40s %-6s %-10s %s\n", "VALUE", "COUNT", "LAST USED", "SOURCE")
	for _, s := range out {
		fmt.Fprintf(w, "%-40s %-6d %-10s %s\n", s.Value, s.Count, s.LastUsed.Format("2006-01-02"), s.Source)
	}
}
