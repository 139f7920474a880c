package cmd

const DESCRIPTION = `
PsyKit runs behavioral experiments from a session manifest: it
preloads the experiment's resources, then drives each block through
a frame-synchronized scheduler until the session ends.
`

const (
	RunDescription = `The run command plays a session manifest: resources are
registered and downloaded first, then the manifest's blocks run in
order under the frame loop.

Example:
        psykit run experiment/manifest.json

`
	FetchDescription = `The fetch command downloads every resource a manifest
declares without running the session, warming the local asset cache
for a later offline run.

Example:
        psykit fetch experiment/manifest.json

`
	ServeDescription = `The serve command plays a session like run, and
additionally exposes a WebSocket endpoint where observers can query
resource state and receive pipeline events as they happen.

Example:
        psykit serve --port 3407 --secret lab-token experiment/manifest.json

`
)
