package cli

import (
	"github.com/iudanet/learnhub/internal/client/iocli"
)

const loginView = "login"

// terminalNotifier выводит уведомления в терминал
type terminalNotifier struct {
	io iocli.IO
}

func (n *terminalNotifier) Notify(message string) {
	n.io.Println("⚠️ ", message)
}

// terminalNavigator: текущий "экран" CLI - выполняемая команда
type terminalNavigator struct {
	io   iocli.IO
	view string
}

func (n *terminalNavigator) CurrentView() string {
	return n.view
}

func (n *terminalNavigator) Navigate(view string) {
	n.view = view
	if view == loginView {
		n.io.Println("Run 'learnhub login' to sign in again.")
	}
}
