package utils

import (
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	log1 "github.com/charmbracelet/log"
)

// Log 全局日志；Init 之前也可以用（默认样式）
var Log = log1.NewWithOptions(os.Stderr, log1.Options{
	ReportTimestamp: true,
	TimeFormat:      time.DateTime,
})

// Init 按配置设置日志级别并套用彩色样式
func Init(level string) {
	lvl, err := log1.ParseLevel(level)
	if err != nil {
		lvl = log1.InfoLevel
	}
	Log = log1.NewWithOptions(os.Stderr, log1.Options{
		//ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
		Prefix:          "jaffre",
	})
	Log.SetStyles(Styles())
}

// For 某个对局的子 logger
func For(gameID string) *log1.Logger {
	return Log.With("game", gameID)
}

func Styles() *log1.Styles {
	styles := log1.DefaultStyles()
	styles.Levels[log1.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG🔍").
		Padding(0, 1, 0, 1).
		Foreground(lipgloss.Color("#808080FF"))

	styles.Levels[log1.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO🃏").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#90EE9080")).
		Foreground(lipgloss.Color("#006400FF")).Bold(true)

	styles.Levels[log1.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN⏰").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#FFD70080")).
		Foreground(lipgloss.Color("#000000FF")).Bold(true)

	styles.Levels[log1.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR🔥").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#FF0000FF")).
		Foreground(lipgloss.Color("#00FFFF00")).Bold(true)

	styles.Levels[log1.FatalLevel] = lipgloss.NewStyle().
		SetString("FATAL⚡️").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#000000FF")).
		Foreground(lipgloss.Color("#00FFFF00")).Bold(true)

	// 对局事件里常用的 key 高亮
	styles.Keys["game"] = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00"))
	styles.Keys["player"] = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E90FF"))
	styles.Keys["err"] = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	return styles
}
