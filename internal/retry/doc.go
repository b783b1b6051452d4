// Package retry executes one logical upstream call with bounded attempts,
// exponential backoff, and a final attempt made with a freshly read
// credential.
//
// The credential lives in an explicit Session value passed into Call and
// returned from it, so a refresh is visible to the caller as data rather than
// as a side effect. Each resolved call reports the histogram bucket it belongs
// to: first_try, retry_k, or failed.
package retry
