package fs

import "popgraph/internal/blob/core"

func putOpts() core.PutOptions { return core.PutOptions{ContentType: "image/svg+xml"} }
