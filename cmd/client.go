package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/theapemachine/mediagen/pkg/a2a"
)

var (
	serverURLFlag string
	taskTypeFlag  string
	sessionFlag   string
	watchFlag     bool
	webhookFlag   string
	styleFlag     string
	negativeFlag  string
	durationFlag  int
	imageURLsFlag []string

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "Drive a mediagen agent from the terminal",
		Long:  `Run client operations against a running mediagen agent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cardCmd = &cobra.Command{
		Use:   "card",
		Short: "Fetch the agent's discovery card",
		RunE: func(cmd *cobra.Command, args []string) error {
			card, err := a2a.NewClient(serverURLFlag).AgentCard()

			if err != nil {
				return err
			}

			fmt.Println(card.String())
			return nil
		},
	}

	sendCmd = &cobra.Command{
		Use:   "send [prompt]",
		Short: "Submit a generation task",
		Long:  longSend,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSend,
	}

	getCmd = &cobra.Command{
		Use:   "get [taskId]",
		Short: "Fetch the current snapshot of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a2a.NewClient(serverURLFlag).GetTask(args[0])

			if err != nil {
				return err
			}

			fmt.Println(task.String())
			return nil
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history [taskId]",
		Short: "Show a task's full status trajectory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := a2a.NewClient(serverURLFlag).GetHistory(args[0])

			if err != nil {
				return err
			}

			for i, status := range history {
				line := fmt.Sprintf("%2d. %-10s %s", i+1, status.State, status.Text())
				fmt.Println(strings.TrimRight(line, " "))
			}

			return nil
		},
	}

	cancelCmd = &cobra.Command{
		Use:   "cancel [taskId]",
		Short: "Cancel a queued or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a2a.NewClient(serverURLFlag).CancelTask(args[0])

			if err != nil {
				return err
			}

			fmt.Println(task.String())
			return nil
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by session",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := a2a.NewClient(serverURLFlag).ListTasks(sessionFlag)

			if err != nil {
				return err
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks found.")
				return nil
			}

			for _, task := range tasks {
				fmt.Printf("%s  %-12s %-10s %s\n", task.ID, task.TaskType, task.Status.State, task.Prompt)
			}

			return nil
		},
	}
)

func runSend(cmd *cobra.Command, args []string) error {
	client := a2a.NewClient(serverURLFlag)
	params := buildSendParams(strings.Join(args, " "))

	if webhookFlag != "" {
		params.Notification = &a2a.NotificationConfig{
			Mode: a2a.NotifyModeWebhook,
			URL:  webhookFlag,
		}

		taskID, err := client.SendTaskWebhook(params)

		if err != nil {
			return err
		}

		fmt.Printf("Task %s accepted, events will be delivered to %s\n", taskID, webhookFlag)
		return nil
	}

	if !watchFlag {
		task, err := client.SendTask(params)

		if err != nil {
			return err
		}

		fmt.Println(task.String())
		return nil
	}

	events := make(chan a2a.Event, 16)
	errChan := make(chan error, 1)

	go func() {
		errChan <- client.SendTaskSubscribe(params, events)
		close(events)
	}()

	for event := range events {
		fmt.Println(renderEvent(event))
	}

	return <-errChan
}

func buildSendParams(prompt string) a2a.TaskSendParams {
	metadata := map[string]any{"taskType": taskTypeFlag}

	if styleFlag != "" {
		metadata["style"] = styleFlag
	}

	if negativeFlag != "" {
		metadata["negativePrompt"] = negativeFlag
	}

	if durationFlag > 0 {
		metadata["duration"] = durationFlag
	}

	if len(imageURLsFlag) > 0 {
		metadata["imageUrls"] = imageURLsFlag
	}

	return a2a.TaskSendParams{
		SessionID: sessionFlag,
		Message: a2a.Message{
			Role:  "user",
			Parts: []a2a.Part{a2a.NewTextPart(prompt)},
		},
		Metadata: metadata,
	}
}

var (
	eventTypeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	eventTimeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	eventDataStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

func renderEvent(event a2a.Event) string {
	var sb strings.Builder

	sb.WriteString(eventTimeStyle.Render(event.Timestamp.Format(time.TimeOnly)))
	sb.WriteString(" ")
	sb.WriteString(eventTypeStyle.Render(string(event.Type)))

	if status, ok := event.Data["status"].(map[string]any); ok {
		if state, ok := status["state"].(string); ok {
			sb.WriteString(" " + eventDataStyle.Render(state))
		}

		if message, ok := status["message"].(map[string]any); ok {
			if parts, ok := message["parts"].([]any); ok && len(parts) > 0 {
				if part, ok := parts[0].(map[string]any); ok {
					if text, ok := part["text"].(string); ok && text != "" {
						sb.WriteString(" " + eventDataStyle.Render(text))
					}
				}
			}
		}
	}

	if artifact, ok := event.Data["artifact"].(map[string]any); ok {
		if name, ok := artifact["name"].(string); ok {
			sb.WriteString(" " + eventDataStyle.Render(name))
		}
	}

	if event.Type == a2a.EventCompletion {
		sb.WriteString(" ✨")
	}

	if event.Type == a2a.EventError {
		log.Error("task failed", "task_id", event.TaskID)
	}

	return sb.String()
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(cardCmd, sendCmd, getCmd, historyCmd, cancelCmd, listCmd)

	clientCmd.PersistentFlags().StringVarP(&serverURLFlag, "server", "s", "http://localhost:3210", "Base URL of the mediagen agent")

	sendCmd.Flags().StringVarP(&taskTypeFlag, "type", "t", "text2image", "Skill to invoke (text2image, text2video, text2audio)")
	sendCmd.Flags().StringVar(&sessionFlag, "session", "", "Session id to group related tasks")
	sendCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Stream progress events until the task finishes")
	sendCmd.Flags().StringVar(&webhookFlag, "webhook", "", "Deliver events to this URL instead of streaming")
	sendCmd.Flags().StringVar(&styleFlag, "style", "", "Style hint passed to the generation backend")
	sendCmd.Flags().StringVar(&negativeFlag, "negative", "", "Negative prompt for image generation")
	sendCmd.Flags().IntVar(&durationFlag, "duration", 0, "Clip length in seconds for video and audio")
	sendCmd.Flags().StringSliceVar(&imageURLsFlag, "image", nil, "Reference image URL (repeatable, required for video)")

	listCmd.Flags().StringVar(&sessionFlag, "session", "", "Only list tasks in this session")
}

var longSend = `
Submit a generation task to a mediagen agent.

Examples:
  # Generate an image and return immediately
  mediagen client send "a watercolor lighthouse at dawn"

  # Generate a video from a reference image and stream progress
  mediagen client send -t text2video -w --image https://example.com/ref.png "pan across the valley"

  # Generate audio and deliver events to a webhook
  mediagen client send -t text2audio --duration 30 --webhook https://example.com/hook "calm lo-fi beat"
`
