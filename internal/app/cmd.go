package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はボット+APIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandExport は全記録をCSVで標準出力に書き出すことを示す。
	CommandExport Command = "export"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "export":
		return CommandExport
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
