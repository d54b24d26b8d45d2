package sqlstore

import "github.com/MuhammadAslam635/referable-dev-sub000/core"

var (
	_ core.DirectoryStore         = (*DirectoryStore)(nil)
	_ core.MessageStore           = (*MessageStore)(nil)
	_ core.ReplyContextStore      = (*ReplyContextStore)(nil)
	_ core.ActivitySink           = (*ActivityStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
