package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Varun-Kachroo/RubrikAI/internal/analysis"
	"github.com/Varun-Kachroo/RubrikAI/internal/csvimport"
	"github.com/Varun-Kachroo/RubrikAI/internal/grading"
	"github.com/Varun-Kachroo/RubrikAI/internal/handler"
	appI18n "github.com/Varun-Kachroo/RubrikAI/internal/i18n"
	"github.com/Varun-Kachroo/RubrikAI/internal/model"
	"github.com/Varun-Kachroo/RubrikAI/internal/report"
	"github.com/Varun-Kachroo/RubrikAI/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import an assignment with its answers from CSV or YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	addCommonFlags(cmd)
	cmd.Flags().String("title", "", "Assignment title (defaults to the file name)")
	cmd.Flags().String("format", "", "Input format (csv, yaml); guessed from the extension when empty")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	hash := sha256sum(data)
	existing, err := db.GetAssignmentByHash(hash)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", path, err)
	}
	if existing != nil {
		slog.Info("file already imported, skipping", "path", path, "assignment_id", existing.ID)
		fmt.Fprintln(cmd.OutOrStdout(), existing.ID)
		return nil
	}

	format := csvimport.Format(strings.ToLower(v.GetString("format")))
	if format == "" {
		format = csvimport.FormatFromName(path)
	}
	title := v.GetString("title")
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	res, err := csvimport.Parse(strings.NewReader(string(data)), format, title)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	res.Assignment.SourceHash = hash
	id, err := db.CreateAssignment(res.Assignment)
	if err != nil {
		return fmt.Errorf("store assignment: %w", err)
	}
	if len(res.Students) > 0 {
		if err := db.SaveSubmissions(id, res.Students); err != nil {
			return fmt.Errorf("store submissions: %w", err)
		}
	}
	slog.Info("imported assignment", "path", path, "id", id,
		"questions", len(res.Assignment.Questions), "students", len(res.Students))
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade every stored answer of an assignment",
		RunE:  runGrade,
	}
	addCommonFlags(cmd)
	addLLMFlags(cmd)
	cmd.Flags().Int64("assignment", 0, "Assignment ID (required)")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func loadAssignment(db *store.Store, v *viper.Viper) (*model.Assignment, error) {
	id := v.GetInt64("assignment")
	a, err := db.GetAssignment(id)
	if err != nil {
		return nil, fmt.Errorf("load assignment %d: %w", id, err)
	}
	if a == nil {
		return nil, fmt.Errorf("assignment %d not found", id)
	}
	return a, nil
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	mode, err := parseMode(v)
	if err != nil {
		return err
	}
	oracle, err := newOracle(v)
	if err != nil {
		return fmt.Errorf("create grading client: %w", err)
	}
	if oracle == nil {
		return fmt.Errorf("grading needs a provider: set --llm-provider")
	}

	a, err := loadAssignment(db, v)
	if err != nil {
		return err
	}
	subs, err := db.ListSubmissions(a.ID)
	if err != nil {
		return fmt.Errorf("load submissions: %w", err)
	}

	runner := &grading.Runner{Oracle: oracle, Sink: db, Mode: mode, Workers: v.GetInt("workers")}
	start := time.Now()
	evals, err := runner.Grade(cmd.Context(), *a, subs)
	if err != nil {
		return err
	}
	slog.Info("graded assignment", "id", a.ID, "students", len(evals), "mode", mode, "elapsed", time.Since(start))

	out := cmd.OutOrStdout()
	for _, ev := range evals {
		fmt.Fprintf(out, "%s\t%.2f/%.2f\t%.2f%%\n", ev.StudentName, ev.TotalScore, ev.TotalMax, ev.Percentage)
	}
	return nil
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run similarity, AI-detection, confidence and class analysis",
		RunE:  runAnalyze,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.Int64("assignment", 0, "Assignment ID (required)")
	f.String("format", "text", "Output format (text, json)")
	f.StringP("lang", "l", "en", "Report language (en, ru)")
	f.Float64("threshold", 60, "Suspicious pair threshold for combined answers (percent)")
	f.Float64("question-threshold", 65, "Suspicious pair threshold for single questions (percent)")
	f.Int("workers", 0, "Similarity workers (0 = number of CPUs)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := initI18n(lang); err != nil {
		return err
	}

	a, err := loadAssignment(db, v)
	if err != nil {
		return err
	}
	subs, err := db.ListSubmissions(a.ID)
	if err != nil {
		return fmt.Errorf("load submissions: %w", err)
	}
	evals, err := db.ListEvaluations(a.ID)
	if err != nil {
		return fmt.Errorf("load evaluations: %w", err)
	}

	opts := analysis.DefaultOptions()
	opts.PairThreshold = v.GetFloat64("threshold")
	opts.QuestionPairThreshold = v.GetFloat64("question-threshold")
	opts.Workers = v.GetInt("workers")

	rep, err := analysis.Run(cmd.Context(), analysis.Input{Assignment: *a, Students: subs, Evaluations: evals}, opts)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := db.SaveReport(model.ReportSummary{RunID: rep.RunID, AssignmentID: a.ID, CreatedAt: rep.GeneratedAt}, payload); err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	w, closeOut, err := outputWriter(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	switch strings.ToLower(v.GetString("format")) {
	case "json":
		if _, err := w.Write(append(payload, '\n')); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	default:
		ctx := appI18n.WithLanguage(cmd.Context(), lang)
		if err := report.WriteText(ctx, w, rep); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an assignment with its answers and evaluations",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.Int64("assignment", 0, "Assignment ID (required)")
	f.String("format", "json", "Output format (json, csv)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	id := v.GetInt64("assignment")
	exp, err := db.ExportAssignment(id)
	if err != nil {
		return fmt.Errorf("export assignment: %w", err)
	}
	if exp == nil {
		return fmt.Errorf("assignment %d not found", id)
	}

	w, closeOut, err := outputWriter(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	if strings.ToLower(v.GetString("format")) == "csv" {
		return csvimport.WriteCSV(w, exp.Assignment, exp.Submissions)
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}

	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user; the password comes from --password or stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserAdd,
	}
	addCommonFlags(add)
	add.Flags().String("role", string(model.UserRoleTeacher), "Role (teacher, admin)")
	add.Flags().String("display-name", "", "Display name (defaults to the username)")
	add.Flags().String("password", "", "Password (prompted when empty)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE:  runUserList,
	}
	addCommonFlags(list)

	passwd := &cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Set a user's password from --password or stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserPasswd,
	}
	addCommonFlags(passwd)
	passwd.Flags().String("password", "", "New password (read from stdin when empty)")

	cmd.AddCommand(add, list, passwd)
	return cmd
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	role := model.UserRole(v.GetString("role"))
	if role != model.UserRoleTeacher && role != model.UserRoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	username := args[0]
	if u, err := db.GetUserByUsername(username); err != nil {
		return err
	} else if u != nil {
		return fmt.Errorf("user %q already exists", username)
	}

	password := v.GetString("password")
	if password == "" {
		password, err = readPassword(cmd)
		if err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	hash, err := handler.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	display := v.GetString("display-name")
	if display == "" {
		display = username
	}
	id, err := db.CreateUser(model.User{
		Username:     username,
		DisplayName:  display,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	slog.Info("created user", "id", id, "username", username, "role", role)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	u, err := db.GetUserByUsername(args[0])
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("user %q not found", args[0])
	}

	password := v.GetString("password")
	if password == "" {
		if password, err = readPassword(cmd); err != nil {
			return err
		}
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	hash, err := handler.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := db.UpdatePassword(u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	slog.Info("password changed", "username", u.Username)
	return nil
}

// readPassword reads one line from stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runUserList(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.ListUsers()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, u := range users {
		state := "active"
		if !u.Active {
			state = "inactive"
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, state)
	}
	return nil
}
