// Package bot はDiscordのスラッシュコマンド経由の操作を提供する。
//
// /link   GitHubアカウント連携リンクの発行
// /log    直近コミットの選択と時間記録
// /history 記録履歴の表示
// /status 連携状態の表示
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/hitoshi/voltrack/internal/model"
	"github.com/hitoshi/voltrack/internal/ratelimit"
	"github.com/hitoshi/voltrack/internal/security"
	"github.com/hitoshi/voltrack/internal/worklog"
)

const (
	// selectMenuPrefix はコミット選択メニューのCustomIDプレフィックス。
	// 時間数を "logselect:<hours>" 形式で埋め込む。
	selectMenuPrefix = "logselect:"

	// maxSelectOptions はDiscordのセレクトメニューの選択肢上限。
	maxSelectOptions = 25

	// commitLabelLength はセレクトメニューに表示するコミットメッセージの最大文字数。
	commitLabelLength = 50

	// interactionTimeout はコマンド処理全体のタイムアウト。
	interactionTimeout = 15 * time.Second
)

// Config はbotの設定。
type Config struct {
	// PublicBaseURL は連携開始URLの生成に使用する公開ベースURL。
	PublicBaseURL string
	// LogCommandCooldown は/logコマンドの連打抑止の間隔。
	LogCommandCooldown time.Duration
}

// Bot はDiscordスラッシュコマンドのハンドラー。
type Bot struct {
	session     *discordgo.Session
	workService *worklog.Service
	limiter     *ratelimit.Limiter
	config      Config

	// lastLogAt は/logコマンドのユーザー別最終実行時刻。
	mu        sync.Mutex
	lastLogAt map[string]time.Time

	registeredCommands []*discordgo.ApplicationCommand
}

// New はBotを生成する。sessionは未接続の状態で渡す。
func New(
	session *discordgo.Session,
	workService *worklog.Service,
	limiter *ratelimit.Limiter,
	config Config,
) *Bot {
	return &Bot{
		session:     session,
		workService: workService,
		limiter:     limiter,
		config:      config,
		lastLogAt:   make(map[string]time.Time),
	}
}

// commandDefinitions は登録するスラッシュコマンドの定義。
var commandDefinitions = []*discordgo.ApplicationCommand{
	{
		Name:        "link",
		Description: "GitHubアカウントを連携する",
	},
	{
		Name:        "log",
		Description: "直近のコミットにボランティア時間を記録する",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "hours",
				Description: "作業時間（0より大きく24以下）",
				Required:    true,
			},
		},
	},
	{
		Name:        "history",
		Description: "ボランティア時間の記録履歴を表示する",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "limit",
				Description: "表示件数（1〜100、デフォルト10）",
				Required:    false,
			},
		},
	},
	{
		Name:        "status",
		Description: "GitHub連携状態と直近の活動を表示する",
	},
}

// Start はDiscordに接続し、スラッシュコマンドを登録する。
func (b *Bot) Start() error {
	b.session.AddHandler(b.onInteraction)
	b.session.Identify.Intents = discordgo.IntentsGuilds

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	for _, cmd := range commandDefinitions {
		created, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		b.registeredCommands = append(b.registeredCommands, created)
	}

	slog.Info("discord bot started",
		slog.Int("commands", len(b.registeredCommands)),
	)
	return nil
}

// Stop はスラッシュコマンドを削除してDiscordから切断する。
func (b *Bot) Stop() error {
	for _, cmd := range b.registeredCommands {
		if err := b.session.ApplicationCommandDelete(b.session.State.User.ID, "", cmd.ID); err != nil {
			slog.Warn("failed to delete command",
				slog.String("command", cmd.Name),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

// onInteraction はInteractionCreateイベントをコマンド別に振り分ける。
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, s, i)
	}
}

// handleCommand はスラッシュコマンドを処理する。
// 全コマンド共通のレート制限をここで適用する。
func (b *Bot) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	discordID := interactionUserID(i)
	if discordID == "" {
		return
	}

	if allowed, retryAfter := b.limiter.Allow(discordID); !allowed {
		seconds := int(retryAfter.Seconds() + 0.999)
		b.respondEphemeral(s, i, fmt.Sprintf("コマンドが多すぎます。%d秒後に再試行してください。", seconds))
		return
	}

	name := i.ApplicationCommandData().Name
	switch name {
	case "link":
		b.handleLink(s, i, discordID)
	case "log":
		b.handleLog(ctx, s, i, discordID)
	case "history":
		b.handleHistory(ctx, s, i, discordID)
	case "status":
		b.handleStatus(ctx, s, i, discordID)
	default:
		slog.Warn("unknown command", slog.String("command", name))
	}
}

// handleLink は連携開始URLを発行して返す。
func (b *Bot) handleLink(s *discordgo.Session, i *discordgo.InteractionCreate, discordID string) {
	startURL := fmt.Sprintf("%s/oauth/start?discord_id=%s", b.config.PublicBaseURL, url.QueryEscape(discordID))
	b.respondEphemeral(s, i, fmt.Sprintf("以下のリンクからGitHubアカウントを連携してください。\n%s\nリンクは10分間有効です。", startURL))
}

// handleLog は直近コミットのセレクトメニューを提示する。
// 時間数はメニューのCustomIDに埋め込み、選択時に記録を確定する。
func (b *Bot) handleLog(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, discordID string) {
	if wait, ok := b.checkLogCooldown(discordID); !ok {
		b.respondEphemeral(s, i, fmt.Sprintf("/log は%d秒後に再実行できます。", int(wait.Seconds()+0.999)))
		return
	}

	hours := commandNumberOption(i, "hours")
	if !security.ValidateHours(hours) {
		b.respondEphemeral(s, i, model.NewInvalidHoursError().Message)
		return
	}

	commits, err := b.workService.RecentCommits(ctx, discordID)
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}
	if len(commits) == 0 {
		b.respondEphemeral(s, i, "直近のコミットが見つかりませんでした。")
		return
	}

	if len(commits) > maxSelectOptions {
		commits = commits[:maxSelectOptions]
	}

	options := make([]discordgo.SelectMenuOption, 0, len(commits))
	for _, c := range commits {
		label := security.SanitizeLabel(c.Message, commitLabelLength)
		if label == "" {
			label = c.SHA[:7]
		}
		options = append(options, discordgo.SelectMenuOption{
			Label:       label,
			Value:       c.SHA,
			Description: security.SanitizeLabel(fmt.Sprintf("%s %s", c.SHA[:7], c.Repo), 100),
		})
	}

	customID := selectMenuPrefix + formatHours(hours)
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("%.2f時間を記録するコミットを選択してください。", hours),
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							CustomID:    customID,
							Placeholder: "コミットを選択",
							Options:     options,
						},
					},
				},
			},
		},
	})
	if err != nil {
		slog.Error("failed to respond with commit menu", slog.String("error", err.Error()))
	}
}

// handleComponent はセレクトメニューの選択を処理し、時間記録を確定する。
func (b *Bot) handleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if !strings.HasPrefix(data.CustomID, selectMenuPrefix) {
		return
	}

	discordID := interactionUserID(i)
	if discordID == "" {
		return
	}

	hours, err := parseHoursFromCustomID(data.CustomID)
	if err != nil || len(data.Values) != 1 {
		b.respondEphemeral(s, i, model.NewInvalidHoursError().Message)
		return
	}

	log, err := b.workService.LogHours(ctx, discordID, data.Values[0], hours)
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}

	b.respondEphemeral(s, i, fmt.Sprintf("コミット %s に %.2f 時間を記録しました。", log.CommitSHA[:7], log.Hours))
}

// handleHistory は記録履歴と合計時間を表示する。
func (b *Bot) handleHistory(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, discordID string) {
	limit := 10
	if v := commandIntegerOption(i, "limit"); v != 0 {
		limit = v
	}

	logs, total, err := b.workService.History(ctx, discordID, limit)
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}
	if len(logs) == 0 {
		b.respondEphemeral(s, i, "記録がまだありません。/log コマンドで時間を記録してください。")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "直近%d件の記録（合計 %.2f 時間）\n", len(logs), total)
	for _, log := range logs {
		fmt.Fprintf(&sb, "- %s  %.2f時間  %s\n",
			log.LoggedAt.Format("2006-01-02"),
			log.Hours,
			log.CommitSHA[:7],
		)
	}
	b.respondEphemeral(s, i, sb.String())
}

// handleStatus は連携状態と直近の活動をembedで表示する。
func (b *Bot) handleStatus(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, discordID string) {
	status, err := b.workService.AccountStatus(ctx, discordID)
	if err != nil {
		b.respondEphemeral(s, i, userMessage(err))
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: "連携状態",
		Color: 0x2da44e,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "GitHubアカウント",
				Value:  status.Account.GitHubLogin,
				Inline: true,
			},
			{
				Name:   "直近7日間のコミット",
				Value:  strconv.Itoa(status.RecentCommitCount),
				Inline: true,
			},
			{
				Name:  "連携日時",
				Value: status.Account.ValidatedAt.Format("2006-01-02 15:04"),
			},
		},
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("failed to respond with status embed", slog.String("error", err.Error()))
	}
}

// checkLogCooldown は/logコマンドの連打抑止を判定する。
// 実行可能な場合は最終実行時刻を更新してtrueを返す。
func (b *Bot) checkLogCooldown(discordID string) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if last, ok := b.lastLogAt[discordID]; ok {
		elapsed := now.Sub(last)
		if elapsed < b.config.LogCommandCooldown {
			return b.config.LogCommandCooldown - elapsed, false
		}
	}
	b.lastLogAt[discordID] = now
	return 0, true
}

// respondEphemeral は本人にのみ見えるテキスト応答を返す。
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("failed to respond to interaction", slog.String("error", err.Error()))
	}
}

// userMessage はサービス層のエラーをユーザー向けメッセージに変換する。
// 想定外のエラーは詳細を伏せる。
func userMessage(err error) string {
	if errors.Is(err, model.ErrNotLinked) {
		return model.NewNotLinkedError().Message + " " + model.NewNotLinkedError().Action
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	slog.Error("unexpected error in bot command", slog.String("error", err.Error()))
	return "エラーが発生しました。しばらく待ってから再度お試しください。"
}

// interactionUserID はインタラクションの発行ユーザーのIDを返す。
// ギルド内とDMでユーザーの格納場所が異なる。
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// formatHours はCustomID埋め込み用に時間数を文字列化する。
func formatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64)
}

// parseHoursFromCustomID はセレクトメニューのCustomIDから時間数を読み戻す。
func parseHoursFromCustomID(customID string) (float64, error) {
	return strconv.ParseFloat(strings.TrimPrefix(customID, selectMenuPrefix), 64)
}

// commandNumberOption はNumber型のコマンドオプション値を返す。
func commandNumberOption(i *discordgo.InteractionCreate, name string) float64 {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return opt.FloatValue()
		}
	}
	return 0
}

// commandIntegerOption はInteger型のコマンドオプション値を返す。
func commandIntegerOption(i *discordgo.InteractionCreate, name string) int {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name {
			return int(opt.IntValue())
		}
	}
	return 0
}
