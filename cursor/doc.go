package cursor

// cursor flattens cursor-paged scans (an opaque token plus a page of results,
// repeated until the backend hands back the terminal token) into one lazy
// sequence. Pages are only requested while the consumer keeps pulling.
