package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/talento-chat/internal/filtering"
	"github.com/spigell/talento-chat/internal/logger"
	"github.com/spigell/talento-chat/internal/positions"
	"github.com/spigell/talento-chat/internal/view"
)

const (
	PromptReportBySkill   = "Report by skill"
	PromptPositionsToFile = "Dump positions to file"
	PromptExit            = "exit"
)

var errExit = errors.New("exit requested")

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions and start a conversation about one of them",
	Run: func(cmd *cobra.Command, _ []string) {
		listPositions(cmd)
	},
}

func init() {
	rootCmd.AddCommand(positionsCmd)

	positionsCmd.Flags().String("api-url", "", "evaluation service http base url (env PUBLIC_API_URL)")
	positionsCmd.Flags().StringSlice("skill", nil, "keep positions requiring any of these skills")
	positionsCmd.Flags().String("availability", "", "keep positions with this availability (full_time, part_time, freelance, internship)")
	positionsCmd.Flags().Int("max-experience", -1, "drop positions asking for more years of experience")
	positionsCmd.Flags().BoolP("print", "p", false, "print the positions and exit")

	viper.BindPFlag("api-url", positionsCmd.Flags().Lookup("api-url"))
	viper.BindPFlag("positions.skills", positionsCmd.Flags().Lookup("skill"))
	viper.BindPFlag("positions.availability", positionsCmd.Flags().Lookup("availability"))
	viper.BindPFlag("positions.max-experience", positionsCmd.Flags().Lookup("max-experience"))
}

func listPositions(cmd *cobra.Command) {
	ctx := cmd.Context()

	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	token, err := resolveToken(config)
	if err != nil {
		logger.Fatal(
			"loading api token",
			zap.Error(err),
			zap.String("hint", "set TALENTO_TOKEN_FILE environment variable or the 'token-file' key in the configuration file"),
		)
	}

	client := newPositionsClient(ctx, config, token, logger)

	list := fetchPositions(client, logger)

	filters := preparePositionFilters(config, logger)
	filtered, err := filters.RunFilters(ctx, list)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	if filtered.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no open positions"))
		return
	}

	if cmd.Flag("print").Value.String() == "true" {
		for _, position := range filtered.Items {
			fmt.Println(position.Label())
		}
		return
	}

	for {
		err := choosePosition(ctx, client, config, filtered, logger)
		if errors.Is(err, errExit) {
			return
		}
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func newPositionsClient(ctx context.Context, config *Config, token string, logger *zap.Logger) *positions.Client {
	client := positions.New(ctx, logger, token, config.Positions.CacheTTL)

	if config.APIURL != "" {
		client.APIURL = config.APIURL
	}
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}
	client.Retries = config.Positions.Retries

	return client
}

// fetchPositions never fails: an unreachable service is an empty listing.
func fetchPositions(client *positions.Client, logger *zap.Logger) *positions.Positions {
	list, err := client.List()
	if err != nil {
		logger.Error("getting positions", zap.Error(err))
		return &positions.Positions{}
	}

	logger.Info("getting positions", zap.Int("count", list.Len()))
	return list
}

func preparePositionFilters(config *Config, logger *zap.Logger) *filtering.Filtering {
	f := filtering.New([]filtering.Filter{
		filtering.NewActive(),
		filtering.NewSkills(config.Positions.Skills),
		filtering.NewAvailability(config.Positions.Availability),
		filtering.NewExperience(config.Positions.MaxExperience),
	}, logger)

	for _, status := range f.Describe() {
		logger.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return f
}

func choosePosition(ctx context.Context, client *positions.Client, config *Config, list *positions.Positions, logger *zap.Logger) error {
	items := make([]string, 0, list.Len()+3)
	for _, position := range list.Items {
		items = append(items, position.Label())
	}

	prompt := promptui.Select{
		Label: "Elige una posición y presiona ENTER",
		Items: append(items, PromptReportBySkill, PromptPositionsToFile, PromptExit),
		Size:  10,
	}

	_, selected, err := prompt.Run()
	if err != nil {
		return err
	}

	switch selected {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportBySkill:
		pretty, _ := json.MarshalIndent(list.ReportBySkill(), "", "  ")
		logger.Info(string(pretty), zap.Int("positions count", list.Len()))
		return nil
	case PromptPositionsToFile:
		filename, err := list.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump positions to file: %w", err)
		}
		logger.Info("dumping positions to file", zap.String("filename", filename))
		return nil
	}

	position := list.FindByLabel(selected)
	if position == nil {
		return fmt.Errorf("there is no such position %q", selected)
	}

	detail, err := client.Get(position.ID)
	if err != nil {
		logger.Warn("getting position details", zap.Error(err), zap.String("position_id", position.ID))
		detail = position
	}

	fmt.Fprintln(os.Stdout, view.PositionDetail(detail))

	start := promptui.Prompt{
		Label:     "¿Iniciar la evaluación para esta posición",
		IsConfirm: true,
	}
	if _, err := start.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return nil
		}
		return err
	}

	logger.Info("starting the chat", zap.String("position_id", detail.ID), zap.String("title", detail.Title))

	chatLog, err := chatLogger(config)
	if err != nil {
		return fmt.Errorf("creating a chat logger: %w", err)
	}
	defer chatLog.Sync()

	if err := startChat(ctx, config, chatLog.With(zap.String("position_id", detail.ID))); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return errExit
}
