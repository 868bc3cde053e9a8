package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Command is a slash command. Aliases resolve to the same handler, so
// "/hilfe" and "/help" are one command.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Handler     CommandHandler
}

// CommandHandler runs a command with everything after its name as args.
type CommandHandler func(ctx context.Context, args string, cc *CommandContext) (*CommandResult, error)

// CommandContext identifies who sent the command and where to answer.
type CommandContext struct {
	Platform  string
	ChannelID string
	UserID    string
	UserName  string
	ReplyTo   string
}

type CommandResult struct {
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Registry maps command names and aliases to commands.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Command
	primary []*Command
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register adds cmd under its name and aliases. A later registration wins
// for any name both claim.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byName[cmd.Name]; ok && old.Name == cmd.Name {
		for i, c := range r.primary {
			if c == old {
				r.primary = append(r.primary[:i], r.primary[i+1:]...)
				break
			}
		}
	}
	r.primary = append(r.primary, cmd)
	r.byName[cmd.Name] = cmd
	for _, a := range cmd.Aliases {
		r.byName[strings.ToLower(a)] = cmd
	}
}

// Dispatch runs the command named in input. Unknown commands get a hint
// instead of an error.
func (r *Registry) Dispatch(ctx context.Context, input string, cc *CommandContext) (*CommandResult, error) {
	name, args := parse(input)

	r.mu.RLock()
	cmd, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		return &CommandResult{
			Content: fmt.Sprintf("Unbekannter Befehl: /%s. Mit /help siehst du alle Befehle.", name),
		}, nil
	}
	return cmd.Handler(ctx, args, cc)
}

// parse splits "/Name@bot  args" into the lower-case name and trimmed args.
// Telegram appends the bot name in groups.
func parse(input string) (name, args string) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	name, args, _ = strings.Cut(input, " ")
	name = strings.ToLower(name)
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name, strings.TrimSpace(args)
}

// List returns each command once, sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, len(r.primary))
	copy(out, r.primary)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
