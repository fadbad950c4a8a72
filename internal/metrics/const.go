package metrics

const Namespace = "blockwatch"

const (
	OperationBlock       = "block"
	OperationUnblock     = "unblock"
	OperationBlockDomain = "block_domain"
	OperationExpire      = "expire"
	OperationRestore     = "restore"
	OperationResync      = "resync"
)

const (
	ResultSuccess = "success"
	ResultNoop    = "noop"
	ResultError   = "error"
)

const (
	StoreOperationSave          = "save"
	StoreOperationAppendHistory = "append_history"
)
