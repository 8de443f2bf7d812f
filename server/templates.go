package server

const loginPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>Sign in - {{.AppName}}</title>
	<style>
		body { font-family: sans-serif; background: #f5f5f5; display: flex; justify-content: center; padding-top: 10vh; }
		.card { background: #fff; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,.15); padding: 2rem; width: 320px; }
		h1 { font-size: 1.2rem; }
		input { width: 100%; padding: .5rem; margin: .4rem 0 1rem; box-sizing: border-box; }
		button { width: 100%; padding: .6rem; background: #2c5282; color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
		.error { color: #c53030; margin-bottom: 1rem; }
	</style>
</head>
<body>
	<div class="card">
		<h1>Sign in to {{.AppName}}</h1>
		{{if .Error}}<div class="error">{{.Error}}</div>{{end}}
		<form method="post" action="/auth/login">
			<input type="hidden" name="next" value="{{.Next}}">
			<label for="username">Username</label>
			<input type="text" id="username" name="username" value="{{.Username}}" autofocus>
			<label for="password">Password</label>
			<input type="password" id="password" name="password">
			<button type="submit">Sign in</button>
		</form>
	</div>
</body>
</html>
`

const consentPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>Authorize {{.ClientName}} - {{.AppName}}</title>
	<style>
		body { font-family: sans-serif; background: #f5f5f5; display: flex; justify-content: center; padding-top: 10vh; }
		.card { background: #fff; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,.15); padding: 2rem; width: 360px; }
		h1 { font-size: 1.2rem; }
		.scopes { background: #f0f4f8; border-radius: 4px; padding: .6rem 1rem; margin: 1rem 0; }
		.actions { display: flex; gap: .8rem; }
		button { flex: 1; padding: .6rem; border: 0; border-radius: 4px; cursor: pointer; }
		.approve { background: #2c5282; color: #fff; }
		.deny { background: #e2e8f0; }
	</style>
</head>
<body>
	<div class="card">
		<h1>{{.ClientName}} wants to access your account</h1>
		<div class="scopes">Requested permissions: <strong>{{.Scopes}}</strong></div>
		<form method="post" action="/auth/consent">
			<input type="hidden" name="response_type" value="{{.Request.ResponseType}}">
			<input type="hidden" name="client_id" value="{{.Request.ClientID}}">
			<input type="hidden" name="redirect_uri" value="{{.Request.RedirectURI}}">
			<input type="hidden" name="scope" value="{{.Request.Scope}}">
			<input type="hidden" name="state" value="{{.Request.State}}">
			<input type="hidden" name="code_challenge" value="{{.Request.CodeChallenge}}">
			<input type="hidden" name="code_challenge_method" value="{{.Request.CodeChallengeMethod}}">
			<div class="actions">
				<button class="deny" type="submit" name="action" value="deny">Deny</button>
				<button class="approve" type="submit" name="action" value="approve">Approve</button>
			</div>
		</form>
	</div>
</body>
</html>
`
