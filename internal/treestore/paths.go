package treestore

// Path builders for the per-user tree layout:
//
//	users/{u}/series/{nmr}/info      series document without seasons
//	users/{u}/series/{nmr}/seasons   the season tree, replaced wholesale
//	users/{u}/series/{nmr}/rewatch   explicit rewatch flag
//	users/{u}/completedSeriesData/{seriesID}
//	users/{u}/completedSeriesNotifications/{seriesID}
//	users/{u}/watchlistOrder

func UserSeriesRoot(userID string) string {
	return "users/" + userID + "/series"
}

func SeriesPath(userID, nmr string) string {
	return UserSeriesRoot(userID) + "/" + nmr
}

func SeriesInfoPath(userID, nmr string) string {
	return SeriesPath(userID, nmr) + "/info"
}

func SeasonsPath(userID, nmr string) string {
	return SeriesPath(userID, nmr) + "/seasons"
}

func RewatchPath(userID, nmr string) string {
	return SeriesPath(userID, nmr) + "/rewatch"
}

func CompletedRecordsRoot(userID string) string {
	return "users/" + userID + "/completedSeriesData"
}

func CompletedRecordPath(userID, seriesID string) string {
	return CompletedRecordsRoot(userID) + "/" + seriesID
}

func DismissalPath(userID, seriesID string) string {
	return "users/" + userID + "/completedSeriesNotifications/" + seriesID
}

func WatchlistOrderPath(userID string) string {
	return "users/" + userID + "/watchlistOrder"
}
