// Package mode defines the closed set of assistant modes a user can select.
package mode

// Mode is an assistant role selected with a command
type Mode int

const (
	Help Mode = iota
	Start
	Summarize
	Code
	Medical
	Translate
	ReplyTweet
	QA
)

type info struct {
	key         string
	description string
	ready       string
	argument    string
}

var table = map[Mode]info{
	Help:       {key: "help", description: "Display help message"},
	Start:      {key: "start", description: "Start a conversation with the assistant"},
	Summarize:  {key: "summarize", description: "Generate a summary on given url", ready: "I'm ready to summarize, please input a url or text", argument: "A url or text to summarize"},
	Code:       {key: "code", description: "Review source code", ready: "I'm ready to review source code", argument: "Source code to review"},
	Medical:    {key: "medical", description: "Review and summarize doctor notes or medical test results", ready: "I am ready to review and summarize doctor notes or medical test results", argument: "Doctor notes or lab results"},
	Translate:  {key: "translate", description: "Translate anything into English", ready: "I'm ready to translate", argument: "Text to translate"},
	ReplyTweet: {key: "reply_tweet", description: "Reply a tweet for you", ready: "I'm ready to process your tweet", argument: "The tweet to reply to"},
	QA:         {key: "qa", description: "I'm ready for general QA", ready: "I'm ready for your questions", argument: "Your question"},
}

// All lists every mode in command-menu order
func All() []Mode {
	return []Mode{Help, Start, Summarize, Code, Medical, Translate, ReplyTweet, QA}
}

// Parse maps a command name to its mode
func Parse(name string) (Mode, bool) {
	for m, i := range table {
		if i.key == name {
			return m, true
		}
	}
	return Help, false
}

// Key is the catalog key and command name of the mode
func (m Mode) Key() string {
	return table[m].key
}

func (m Mode) String() string {
	return m.Key()
}

// Description is the short text shown in platform command menus
func (m Mode) Description() string {
	return table[m].description
}

// Ready is the acknowledgement sent after the mode is armed.
// Empty for Help and Start, which answer with the help text.
func (m Mode) Ready() string {
	return table[m].ready
}

// ArgumentHint describes the optional inline argument; empty if the command takes none
func (m Mode) ArgumentHint() string {
	return table[m].argument
}

// Arms reports whether selecting the mode changes session state
func (m Mode) Arms() bool {
	return m != Help
}
