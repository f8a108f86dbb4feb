package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"preclear_disk/internal/app"
	"preclear_disk/internal/config"
	"preclear_disk/internal/logging"
	"preclear_disk/internal/preclear"
	"preclear_disk/internal/reporting"
	"preclear_disk/internal/security"
	"preclear_disk/internal/system"
)

const (
	Version = "2024.06.01"
	AppName = "Preclear Disk"

	// Exit codes
	EXIT_SUCCESS = 0
	EXIT_WARNING = 2
	EXIT_ERROR   = 1
)

var (
	cfg        *config.Config
	logger     *logging.EnterpriseLogger
	verbose    bool
	configPath string
	jsonOutput bool
)

// CLI команды
var rootCmd = &cobra.Command{
	Use:           "preclear",
	Short:         "Preclear Disk - подготовка неназначенных дисков",
	Long:          "Управление запусками preclear скрипта на неназначенных дисках через сессии tmux",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP интерфейс плагина",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать неназначенные диски",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status [диск]",
	Short: "Показать состояние preclear для диска",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var startCmd = &cobra.Command{
	Use:   "start [диск]",
	Short: "Запустить preclear на диске",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop [диск]",
	Short: "Остановить preclear на диске",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

var clearCmd = &cobra.Command{
	Use:   "clear [диск]",
	Short: "Очистить статус и сессию завершённого запуска",
	Args:  cobra.ExactArgs(1),
	RunE:  runClear,
}

var showCmd = &cobra.Command{
	Use:   "show [диск]",
	Short: "Показать вывод сессии preclear",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var reportsCmd = &cobra.Command{
	Use:   "reports [диск]",
	Short: "Показать отчёты о запусках",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReports,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Показать информацию о системе и скрипте",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Подробный вывод")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Путь к конфигурации")

	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Вывод в формате JSON")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Вывод в формате JSON")
	infoCmd.Flags().BoolVar(&jsonOutput, "json", false, "Вывод в формате JSON")

	startCmd.Flags().String("op", "", "Операция скрипта (пусто - полный цикл, -V проверка, -z обнуление)")
	startCmd.Flags().String("profile", "", "Профиль запуска (default/fast/thorough/verify)")
	startCmd.Flags().IntP("cycles", "C", 0, "Количество циклов")
	startCmd.Flags().StringP("read-size", "r", "", "Размер блока чтения")
	startCmd.Flags().StringP("write-size", "w", "", "Размер блока записи")
	startCmd.Flags().IntP("mail", "M", 0, "Уровень почтовых уведомлений")
	startCmd.Flags().IntP("notify", "o", 0, "Уровень уведомлений")
	startCmd.Flags().BoolP("skip-preread", "W", false, "Пропустить предварительное чтение")
	startCmd.Flags().BoolP("fast", "f", false, "Быстрое чтение")

	reportsCmd.Flags().Duration("prune-older-than", 0, "Удалить отчёты старше указанного срока (например: 720h)")

	rootCmd.AddCommand(serveCmd, listCmd, statusCmd, startCmd, stopCmd, clearCmd, showCmd, reportsCmd, infoCmd)
}

// setup загружает конфигурацию, создаёт логгер и собирает приложение
func setup() (*app.App, error) {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	if err := security.SecurityChecks(cfg); err != nil {
		return nil, err
	}

	logger, err = logging.NewEnterpriseLogger(cfg, verbose)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации логгера: %w", err)
	}

	runner := system.NewExecRunner(cfg.GetCommandTimeout())
	return app.NewApp(cfg, logger, runner, Version), nil
}

// commandContext отменяется по SIGINT/SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Log("WARN", "Получен сигнал, завершаем работу", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	activeStyle = cellStyle.Foreground(lipgloss.Color("#478406"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func runList(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := commandContext()
	defer cancel()

	disks, err := a.GetDisks(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(disks)
	}

	if len(disks) == 0 {
		fmt.Println("No unassigned disks available.")
		return nil
	}

	rows := make([][]string, 0, len(disks))
	for _, d := range disks {
		temp := d.Temperature
		if temp != "" && temp != "*" {
			temp += " °C"
		}
		rows = append(rows, []string{d.Name, d.Serial, temp, d.SizeHuman, d.Status.State.String(), d.Status.Message})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("DEVICE", "SERIAL", "TEMP", "SIZE", "STATE", "MESSAGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(disks) && col == 4 && disks[row].Status.State == preclear.StateRunning:
				return activeStyle
			default:
				return cellStyle
			}
		})

	fmt.Println(t)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := commandContext()
	defer cancel()

	disk, ok, err := a.GetDisk(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", app.ErrDeviceUnavailable, args[0])
	}

	if jsonOutput {
		return printJSON(disk)
	}

	fmt.Printf("%s (%s)\n", disk.Device, disk.Serial)
	fmt.Printf("  Состояние: %s\n", disk.Status.State)
	if disk.Status.Message != "" {
		fmt.Printf("  Сообщение: %s\n", disk.Status.Message)
	}
	if len(disk.Status.Actions) > 0 {
		fmt.Printf("  Действия: %v\n", disk.Status.Actions)
	}
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	opts, err := optionsFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, cancel := commandContext()
	defer cancel()

	launch, err := a.StartPreclear(ctx, args[0], opts)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Preclear запущен на /dev/%s (сессия %s, run %s)\n", launch.Device, launch.Session, launch.RunID)
	if launch.ScriptVersion != "" {
		fmt.Printf("  Версия скрипта: %s\n", launch.ScriptVersion)
	}
	if opts.NeedsConfirmation() && !launch.Noprompt && !launch.Confirmed {
		fmt.Println("⚠ Подтверждение не запрошено скриптом, проверьте вывод сессии")
	}
	return nil
}

// optionsFromFlags собирает параметры запуска; профиль применяется первым,
// явные флаги его переопределяют
func optionsFromFlags(cmd *cobra.Command) (preclear.Options, error) {
	var opts preclear.Options

	flags := cmd.Flags()
	if profile, _ := flags.GetString("profile"); profile != "" {
		if err := preclear.ApplyProfile(&opts, profile); err != nil {
			return opts, fmt.Errorf("ошибка применения профиля %s: %w", profile, err)
		}
	}

	if flags.Changed("op") {
		opts.Op, _ = flags.GetString("op")
		if opts.Op == "0" {
			opts.Op = ""
		}
	}
	if flags.Changed("cycles") {
		opts.Passes, _ = flags.GetInt("cycles")
	}
	if flags.Changed("read-size") {
		opts.ReadSize, _ = flags.GetString("read-size")
	}
	if flags.Changed("write-size") {
		opts.WriteSize, _ = flags.GetString("write-size")
	}
	if flags.Changed("mail") {
		opts.MailLevel, _ = flags.GetInt("mail")
	}
	if flags.Changed("notify") {
		opts.NotifyLevel, _ = flags.GetInt("notify")
	}
	if flags.Changed("skip-preread") {
		opts.SkipPreRead, _ = flags.GetBool("skip-preread")
	}
	if flags.Changed("fast") {
		opts.FastRead, _ = flags.GetBool("fast")
	}

	return opts, opts.Validate()
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if err := a.StopPreclear(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("✓ Preclear на %s остановлен\n", args[0])
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if err := a.ClearPreclear(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("✓ Статус %s очищен\n", args[0])
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	out, ok, err := a.ShowPreclear(context.Background(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("нет активной сессии для %s", args[0])
	}
	fmt.Print(out)
	return nil
}

func runReports(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	if maxAge, _ := cmd.Flags().GetDuration("prune-older-than"); maxAge > 0 {
		removed, err := reporting.PruneReports(cfg, maxAge, time.Now())
		if err != nil {
			return fmt.Errorf("ошибка очистки отчётов: %w", err)
		}
		logger.Log("INFO", "Старые отчёты удалены", "count", removed)
		fmt.Printf("Удалено отчётов: %d\n", removed)
	}

	device := ""
	if len(args) > 0 {
		device = args[0]
	}

	reports, err := a.GetReports(device)
	if err != nil {
		return err
	}

	if len(reports) == 0 {
		fmt.Println("Отчёты не найдены")
		return nil
	}
	for _, r := range reports {
		confirmed := "✓"
		if !r.Confirmed {
			confirmed = "-"
		}
		fmt.Printf("%s  %-6s %s  %s  %s\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.Device, confirmed, r.RunID, r.Command)
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	info := a.GetSystemInfo(context.Background())
	if jsonOutput {
		return printJSON(info)
	}

	fmt.Printf("%s %s (%s/%s)\n", AppName, info.Version, info.OS, info.Architecture)
	fmt.Println("==========================")
	if info.ScriptPresent {
		fmt.Printf("Скрипт: %s (версия %q, noprompt: %t)\n", cfg.Paths.ScriptFile, info.ScriptVersion, info.Noprompt)
	} else {
		fmt.Printf("Скрипт: не найден (%s)\n", cfg.Paths.ScriptFile)
	}
	fmt.Printf("tmux: %t\n", info.TmuxAvailable)
	fmt.Printf("Сессии: %d\n", len(info.Sessions))
	for _, s := range info.Sessions {
		fmt.Printf("  %s\n", s)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		// Недоступный диск или отсутствующий скрипт не считаем сбоем плагина
		if errors.Is(err, app.ErrDeviceUnavailable) || errors.Is(err, preclear.ErrScriptMissing) {
			os.Exit(EXIT_WARNING)
		}
		os.Exit(EXIT_ERROR)
	}
	os.Exit(EXIT_SUCCESS)
}
