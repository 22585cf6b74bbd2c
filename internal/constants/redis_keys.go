package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// FileModulePrefix 文件模块
	FileModulePrefix = "file"
	// ChatModulePrefix 聊天模块
	ChatModulePrefix = "chat"

	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityTextDedupSet 解析文本去重集合实体
	EntityTextDedupSet = "text_dedup_set"
	// EntityMD5ToFileID MD5到文件标识的映射实体
	EntityMD5ToFileID = "md5_to_file_id"
	// EntitySession 聊天会话实体
	EntitySession = "session"

	// KeyFileMD5Set 文件MD5集合，用于快速去重 (SET)
	// 格式: app:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyTextMD5Set 解析后文本MD5集合 (SET)
	// 格式: app:file:text_dedup_set
	KeyTextMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityTextDedupSet

	// KeyFileMD5ToFileID MD5到文件标识的映射 (STRING)
	// 格式: app:file:md5_to_file_id:{md5}
	KeyFileMD5ToFileID = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToFileID + ":%s"

	// KeyChatSessionPrefix 聊天会话历史 (LIST)，前缀后接sessionID
	// 格式: app:chat:session:{sessionID}
	KeyChatSessionPrefix = AppPrefix + ":" + ChatModulePrefix + ":" + EntitySession + ":"
)
