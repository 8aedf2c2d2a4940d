package follow

type RenderState string

const (
	Following    RenderState = "following"
	NotFollowing RenderState = "not-following"
	Pending      RenderState = "pending"
	Self         RenderState = "self"
)

// Directory is the listing that shows follow buttons. It is asked for the identifiers it
// currently shows and told how each one should look.
type Directory interface {
	Candidates() []string
	Render(id string, state RenderState)
}

// Notices left in the session for the next render.
const (
	NoticeFollowOK    = "follow_ok"
	NoticeFollowError = "follow_error"
	NoticeSignerError = "signer_error"
)
