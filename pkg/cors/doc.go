/*
Package cors decides which origins may call the API cross-origin.

A Policy is a single origin-acceptance predicate built from one of three
presets:

  - exact: the origin must be one of the configured origins;
  - wildcard: every origin is accepted, responses carry "*";
  - trusted: the origin is absent (non-browser client), a localhost or
    loopback origin on any scheme and port, or a host under one of the
    configured domain suffixes.

The same predicate serves simple requests and preflights. Rejected origins get
no CORS headers at all, the browser then blocks the response.
*/
package cors
