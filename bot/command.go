package bot

import (
	"strings"
	"unicode"
)

// CommandKind enumerates the commands the bot understands
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandStart
	CommandConnect
	CommandWallet
	CommandHelp
)

var commandNames = map[string]CommandKind{
	"/start":   CommandStart,
	"/connect": CommandConnect,
	"/wallet":  CommandWallet,
	"/help":    CommandHelp,
}

func (k CommandKind) String() string {
	switch k {
	case CommandStart:
		return "start"
	case CommandConnect:
		return "connect"
	case CommandWallet:
		return "wallet"
	case CommandHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Command is a parsed chat message
type Command struct {
	Kind    CommandKind
	// Mention is the bot name from a "/cmd@BotName" form, empty otherwise
	Mention string
	Args    string
}

// ParseCommand parses raw message text. Matching is case-sensitive and
// requires the leading slash; anything else is CommandUnknown.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{Kind: CommandUnknown}
	}

	head, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, args = text[:i], text[i+1:]
	}
	head, mention, _ := strings.Cut(head, "@")

	kind, ok := commandNames[head]
	if !ok {
		kind = CommandUnknown
	}

	return Command{
		Kind:    kind,
		Mention: mention,
		Args:    strings.TrimSpace(args),
	}
}

// AddressedTo reports whether the command is meant for botName. Commands
// without a mention are addressed to every bot in the chat.
func (c Command) AddressedTo(botName string) bool {
	if c.Mention == "" || botName == "" {
		return true
	}
	return strings.EqualFold(c.Mention, botName)
}
