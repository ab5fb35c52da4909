package bot

// Command constants for Telegram bot commands.
const (
	CommandStart    = "/start"
	CommandHelp     = "/help"
	CommandRegister = "/register"
	CommandBalance  = "/balance"
	CommandTopUp    = "/topup"
	CommandCancel   = "/cancel"
	CommandPrice    = "/price"
	CommandHistory  = "/history"
	CommandOrder    = "/mmb"
)

// Admin commands.
const (
	CommandApprove     = "/approve"
	CommandReject      = "/reject"
	CommandGrant       = "/grant"
	CommandDeduct      = "/deduct"
	CommandBan         = "/ban"
	CommandUnban       = "/unban"
	CommandAddAdmin    = "/addadm"
	CommandRemoveAdmin = "/unadm"
	CommandSetPrice    = "/setprice"
	CommandRemovePrice = "/removeprice"
	CommandMaintenance = "/maintenance"
	CommandSetPay      = "/setpay"
	CommandReport      = "/report"
	CommandAdminHelp   = "/adminhelp"
	CommandReply       = "/reply"
	CommandDone        = "/done"
	CommandSendGroup   = "/sendgroup"
)
