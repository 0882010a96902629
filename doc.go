// Package tutorapi is the request client for the tutoring platform REST API.
//
// Every call resolves to a Response envelope instead of an error:
//
//   - Identical in-flight requests share one network call and one result
//   - GETs outside live endpoints (/auth/, /users/, /staff/) are cached for 5 minutes
//   - A 401 refreshes the session once, shared by every caller that hit it
//   - Network and server failures retry with capped exponential backoff
//   - Bare arrays, {"data": ...} and paginated {"results": [...]} bodies are
//     normalized into Data
//   - Failures carry a readable message derived from the server's body
//
// Typical usage:
//
//	client := tutorapi.New("https://tutor.example.com/api",
//	    tutorapi.WithKeyValueStore(store),
//	    tutorapi.WithNavigator(tutorapi.NavigatorFunc(showLogin)),
//	)
//	if resp := client.Login(ctx, "amara", "secret"); !resp.Success {
//	    return resp.Err()
//	}
//	sessions := tutorapi.Do[[]Session](ctx, client, "/sessions/upcoming/", tutorapi.RequestOptions{})
//
// Token persistence goes through the KeyValueStore port; package tokenstore
// provides OS keyring and JSON file implementations.
package tutorapi
