package main

import (
	"encoding/json"
	"fmt"
	"insights-gateway/core"
	"insights-gateway/models"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var (
		filePath string
		mimeType string
		prompt   string
	)

	cmd := &cobra.Command{
		Use:   "ask <kind> [input]",
		Short: "Dispatch a single request through the backend chain",
		Long: `Dispatch one request and print the result.

Kinds: describe, regularize, insights, summarize, action-items, question-answer.
Input is read from the argument, --file, or stdin.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kind, err := models.ParseRequestKind(args[0])
			if err != nil {
				return err
			}

			// describe --file 由服务直接读取文件
			var input []byte
			if kind != models.KindDescribe || filePath == "" || len(args) == 2 {
				if input, err = readInput(cmd, args, filePath); err != nil {
					return err
				}
			}

			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			a.service.SetPrompt(kind, prompt)

			out, err := runAsk(cmd, a.service, kind, input, filePath, mimeType)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Read input from file (image file for describe)")
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "Image MIME type for describe (sniffed when empty)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Replace the default prompt for this request kind")
	return cmd
}

func readInput(cmd *cobra.Command, args []string, filePath string) ([]byte, error) {
	switch {
	case len(args) == 2:
		return []byte(args[1]), nil
	case filePath != "":
		return os.ReadFile(filePath)
	default:
		return io.ReadAll(cmd.InOrStdin())
	}
}

func runAsk(cmd *cobra.Command, service *core.InsightsService, kind models.RequestKind, input []byte, filePath, mimeType string) (string, error) {
	ctx := cmd.Context()

	var (
		result *models.DispatchResult
		err    error
	)
	switch kind {
	case models.KindDescribe:
		if input == nil {
			result, err = service.DescribeFile(ctx, filePath)
		} else {
			result, err = service.Describe(ctx, input, mimeType)
		}
	case models.KindRegularize:
		return service.Regularize(ctx, strings.TrimSpace(string(input)))
	case models.KindInsights:
		points, err := service.Sentiment(ctx, input)
		if err != nil {
			return "", err
		}
		data, err := json.MarshalIndent(points, "", "  ")
		return string(data), err
	case models.KindSummarize:
		result, err = service.Summarize(ctx, string(input))
	case models.KindActionItems:
		result, err = service.ActionItems(ctx, input)
	case models.KindQuestionAnswer:
		result, err = service.AnswerQuestion(ctx, string(input))
	default:
		return "", fmt.Errorf("unsupported request kind %s", kind)
	}
	if err != nil {
		return "", err
	}
	return result.Text, nil
}
