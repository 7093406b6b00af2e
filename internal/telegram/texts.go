package telegram

// Canned replies for the founder chat.
const (
	UnauthorizedMessage = "This bot is private. Visit vakstudios.in to shop."

	WelcomeMessage = "Welcome to the Vâk posting bot.\n\n" +
		"Send an Instagram/Pinterest inspiration link with saree photo(s), or send a link + product code (e.g. VAK-042)."

	HelpMessage = "How to use:\n" +
		"1) Send inspiration link + saree photo(s)\n" +
		"2) Or send link + product code (VAK-042)\n" +
		"3) Review options and reply: 1/2/3, edit caption, redo, approve, cancel\n" +
		"4) After approve, reply post now\n\n" +
		"Reels: send a reel link, say 'reel this' on a finished post, or use /reel and /ad.\n" +
		"Note: scheduling is not in v1 yet."

	ProcessingMessage = "Got it! Analyzing the reference post and styling your saree.\n" +
		"This usually takes 2-3 minutes. I'll send you options when ready."

	VideoProcessingMessage = "Got it! Creating a reel from your saree.\n" +
		"Video generation takes 3-5 minutes. I'll send you the clips when ready."

	NeedPhotoMessage       = "Got the inspiration! Now send me the saree photo(s) you want to feature."
	UnsupportedLinkMessage = "I work best with Instagram and Pinterest links. Can you send one of those?"
	SchedulingMessage      = "Scheduling is not available in v1 yet. Please use 'post now'."
	DailyLimitMessage      = "Daily limit reached (10 posts). Try again tomorrow."
	NoActivePostMessage    = "No active post found. Send a new inspiration link to begin."
)
