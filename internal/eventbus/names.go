package eventbus

// Topic names shared between the stream manager, the chat session and the
// consumers that sit on top of them.
const (
	TopicConnected        = "connected"
	TopicDisconnected     = "disconnected"
	TopicError            = "error"
	TopicState            = "state"
	TopicMessage          = "message"
	TopicDownloadProgress = "download-progress"
	TopicNewMessage       = "newMessage"
	TopicHistoryLoaded    = "historyLoaded"
	TopicLoadingChange    = "loadingChange"
	TopicButtonPress      = "buttonPress"
	TopicQuickCommand     = "quickCommand"
	TopicMessagesCleared  = "messagesCleared"
	TopicSendFailed       = "sendFailed"
)

