package bot

// Request is an incoming command or button press, stripped of transport
// details.
type Request struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string

	// Text is the message text, or the button action for callbacks.
	Text     string
	Callback bool
}

// Button is an inline button. Action comes back as Request.Text with
// Callback set when the button is pressed.
type Button struct {
	Label  string
	Action string
}

// Reply is HTML formatted text with optional rows of buttons.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Command is an entry of the bot menu.
type Command struct {
	Name        string
	Description string
}

// Commands lists the commands shown in the client menu. The admin only
// /stats is left out.
var Commands = []Command{
	{Name: "start", Description: "What this bot does"},
	{Name: "add", Description: "Subscribe to a show"},
	{Name: "list", Description: "Your subscriptions"},
	{Name: "del", Description: "Unsubscribe from a show"},
	{Name: "calendar", Description: "Upcoming episodes"},
	{Name: "help", Description: "Usage"},
}
